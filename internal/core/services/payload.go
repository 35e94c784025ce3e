package services

import (
	"encoding/json"
	"fmt"
)

func marshalDocument(doc any) (json.RawMessage, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal change document: %w", err)
	}
	return json.RawMessage(data), nil
}
