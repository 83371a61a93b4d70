package signalbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/peter0524/service-fabric/internal/domain"
)

func TestTopic(t *testing.T) {
	require.Equal(t, "signals.news", Topic(domain.ServiceNews))
	require.Equal(t, "signals.flow", Topic(domain.ServiceFlow))
}

func TestNewKafkaBus_NoBrokers(t *testing.T) {
	_, err := NewKafkaBus(nil, nil)
	require.Error(t, err)
}

func TestNoopBus(t *testing.T) {
	var b Bus = NoopBus{}
	require.NoError(t, b.Publish(context.Background(), domain.ServiceNews, domain.Signal{}))
	require.NoError(t, b.Close())
}
