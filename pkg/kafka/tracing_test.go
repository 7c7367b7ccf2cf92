package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestKafkaHeaderCarrier_SetAndGet(t *testing.T) {
	headers := []kafka.Header{{Key: "existing", Value: []byte("value1")}}
	c := NewHeaderCarrier(&headers)

	assert.Equal(t, "value1", c.Get("existing"))
	assert.Empty(t, c.Get("missing"))

	c.Set("new-key", "new-value")
	assert.Equal(t, "new-value", c.Get("new-key"))

	c.Set("existing", "updated")
	assert.Equal(t, "updated", c.Get("existing"))
	assert.Len(t, headers, 2)
}

func TestKafkaHeaderCarrier_Keys(t *testing.T) {
	headers := []kafka.Header{{Key: "a"}, {Key: "b"}, {Key: "c"}}
	assert.ElementsMatch(t, []string{"a", "b", "c"}, NewHeaderCarrier(&headers).Keys())

	var empty []kafka.Header
	assert.Empty(t, NewHeaderCarrier(&empty).Keys())
}
