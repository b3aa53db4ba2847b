package httpapi

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/vendorsync/internal/domain"
)

type orderItemRequest struct {
	Name     string          `json:"name" validate:"required,max=200"`
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0"`
	Unit     string          `json:"unit" validate:"required,max=32"`
}

type createOrderRequest struct {
	SupplierID   string             `json:"supplierId" validate:"max=128"`
	SupplierName string             `json:"supplierName" validate:"required,max=200"`
	Items        []orderItemRequest `json:"items" validate:"required,min=1,dive"`
	TotalAmount  decimal.Decimal    `json:"totalAmount" validate:"gte=0"`
}

func (r createOrderRequest) toDraft() domain.OrderDraft {
	items := make([]domain.OrderItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, domain.OrderItem{
			Name:     strings.TrimSpace(item.Name),
			Quantity: item.Quantity,
			Unit:     strings.TrimSpace(item.Unit),
		})
	}
	return domain.OrderDraft{
		SupplierID:   strings.TrimSpace(r.SupplierID),
		SupplierName: strings.TrimSpace(r.SupplierName),
		Items:        items,
		TotalAmount:  r.TotalAmount,
	}
}

type connectivityRequest struct {
	Online *bool `json:"online" validate:"required"`
}

// newValidator настраивает validator: decimal сравнивается как число,
// в ошибках используются JSON-имена полей.
func newValidator() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// bindAndValidate читает JSON и валидирует его. При ошибке уже записан ответ 400.
func bindAndValidate(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	if err := c.ShouldBindJSON(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid_request_body",
			"msg":   err.Error(),
		})
		return err
	}

	if err := v.Struct(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation_failed",
			"fields": validationErrorsToMap(err),
		})
		return err
	}
	return nil
}

func validationErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	ve, ok := err.(validatorv10.ValidationErrors)
	if !ok {
		out["error"] = err.Error()
		return out
	}
	for _, fe := range ve {
		// "createOrderRequest.items[0].quantity" -> "items[0].quantity"
		field := fe.Namespace()
		if idx := strings.Index(field, "."); idx >= 0 {
			field = field[idx+1:]
		}
		out[field] = fe.Tag()
	}
	return out
}
