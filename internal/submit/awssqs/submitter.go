// Package awssqs отправляет офлайн-заказы в очередь AWS SQS.
package awssqs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/vladislavdragonenkov/vendorsync/internal/domain"
)

// API — часть клиента SQS, нужная отправителю.
type API interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// NewClient загружает AWS-конфигурацию по умолчанию. endpoint переопределяет
// адрес сервиса (localstack); пустая строка оставляет стандартный.
func NewClient(ctx context.Context, region, endpoint string) (*sqs.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// Submitter публикует заказ одним SendMessage.
// Для FIFO-очереди id заказа используется как MessageDeduplicationId.
type Submitter struct {
	client   API
	queueURL string
	fifo     bool
}

// NewSubmitter создаёт SQS-реализацию OrderSubmitter.
func NewSubmitter(client API, queueURL string) *Submitter {
	return &Submitter{
		client:   client,
		queueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, ".fifo"),
	}
}

func (s *Submitter) SubmitOrder(ctx context.Context, order domain.OfflineOrder) error {
	if s == nil || s.client == nil || s.queueURL == "" {
		return fmt.Errorf("sqs submitter is not initialized")
	}

	body, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order %s: %w", order.ID, err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"order_id":    stringAttribute(order.ID),
			"supplier_id": stringAttribute(order.SupplierID),
			"attempt": {
				DataType:    aws.String("Number"),
				StringValue: aws.String(strconv.Itoa(order.Attempts + 1)),
			},
		},
	}
	if s.fifo {
		group := order.SupplierID
		if group == "" {
			group = order.ID
		}
		input.MessageGroupId = aws.String(group)
		input.MessageDeduplicationId = aws.String(order.ID)
	}

	if _, err := s.client.SendMessage(ctx, input); err != nil {
		if isPermanent(err) {
			return fmt.Errorf("%w: send message: %w", domain.ErrSubmitRejected, err)
		}
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func stringAttribute(value string) sqstypes.MessageAttributeValue {
	return sqstypes.MessageAttributeValue{
		DataType:    aws.String("String"),
		StringValue: aws.String(value),
	}
}

func isPermanent(err error) bool {
	var (
		tooLong     *sqstypes.InvalidMessageContents
		missing     *sqstypes.QueueDoesNotExist
		unsupported *sqstypes.UnsupportedOperation
	)
	return errors.As(err, &tooLong) || errors.As(err, &missing) || errors.As(err, &unsupported)
}

var _ domain.OrderSubmitter = (*Submitter)(nil)
