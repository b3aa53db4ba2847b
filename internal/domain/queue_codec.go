package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// queueFormatVersion — текущая версия формата слота очереди.
const queueFormatVersion = 1

type queueEnvelope struct {
	Version int            `json:"version"`
	Orders  []OfflineOrder `json:"orders"`
}

// EncodeQueue сериализует очередь в формат слота, сохраняя порядок заказов.
func EncodeQueue(orders []OfflineOrder) ([]byte, error) {
	if orders == nil {
		orders = []OfflineOrder{}
	}
	data, err := json.Marshal(queueEnvelope{Version: queueFormatVersion, Orders: orders})
	if err != nil {
		return nil, fmt.Errorf("encode offline queue: %w", err)
	}
	return data, nil
}

// DecodeQueue разбирает содержимое слота.
// Поддерживает и конверт с версией, и голый JSON-массив, который
// веб-клиент исторически писал в localStorage.
func DecodeQueue(data []byte) ([]OfflineOrder, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var orders []OfflineOrder
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &orders); err != nil {
			return nil, fmt.Errorf("decode legacy offline queue: %w", err)
		}
	} else {
		var env queueEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("decode offline queue: %w", err)
		}
		if env.Version > queueFormatVersion {
			return nil, fmt.Errorf("unsupported offline queue version %d", env.Version)
		}
		orders = env.Orders
	}

	seen := make(map[string]struct{}, len(orders))
	for i, order := range orders {
		if order.ID == "" {
			return nil, fmt.Errorf("offline queue record %d has empty id", i)
		}
		if !order.Status.Valid() {
			return nil, fmt.Errorf("offline queue record %s has unknown status %q", order.ID, order.Status)
		}
		if _, dup := seen[order.ID]; dup {
			return nil, fmt.Errorf("offline queue has duplicate id %s", order.ID)
		}
		seen[order.ID] = struct{}{}
	}

	return orders, nil
}
