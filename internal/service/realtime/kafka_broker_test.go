package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kafkaRecord struct {
	key, value []byte
	err        error
}

// scriptedLog 按顺序返回预设的读取结果，读完后阻塞到 ctx 取消
type scriptedLog struct {
	mu      sync.Mutex
	records []kafkaRecord
	reads   int
}

func (l *scriptedLog) SendMessage(context.Context, []byte, []byte) error { return nil }

func (l *scriptedLog) ReadMessage(ctx context.Context) ([]byte, []byte, error) {
	l.mu.Lock()
	l.reads++
	if len(l.records) > 0 {
		r := l.records[0]
		l.records = l.records[1:]
		l.mu.Unlock()
		return r.key, r.value, r.err
	}
	l.mu.Unlock()
	<-ctx.Done()
	return nil, nil, ctx.Err()
}

func (l *scriptedLog) Close() {}

func TestKafkaBroker_RunSurvivesReadErrors(t *testing.T) {
	broken := errors.New("broker not available")
	log := &scriptedLog{records: []kafkaRecord{
		{err: broken},
		{key: []byte("S1"), value: []byte("a")},
		{err: broken},
		{err: broken},
		{key: []byte("S1"), value: []byte("b")},
	}}
	broker := NewKafkaBroker(log)
	broker.retryInitial = time.Millisecond
	broker.retryMax = 5 * time.Millisecond

	var (
		mu  sync.Mutex
		got []string
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- broker.Run(ctx, func(sessionId string, data []byte) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, sessionId+":"+string(data))
		})
	}()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run 没有在 ctx 取消后退出")
	}
	assert.Equal(t, []string{"S1:a", "S1:b"}, got)
}

func TestKafkaBroker_RunStopsDuringBackoff(t *testing.T) {
	log := &scriptedLog{records: []kafkaRecord{{err: errors.New("down")}}}
	broker := NewKafkaBroker(log)
	broker.retryInitial = time.Hour
	broker.retryMax = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- broker.Run(ctx, func(string, []byte) {}) }()

	assert.Eventually(t, func() bool {
		log.mu.Lock()
		defer log.mu.Unlock()
		return log.reads == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("退避期间 ctx 取消后 Run 没有退出")
	}
}
