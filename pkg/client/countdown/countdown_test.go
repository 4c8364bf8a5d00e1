package countdown

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(now time.Time, d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func TestCompute_Thresholds(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		end   *time.Time
		level Level
		text  string
	}{
		{"above warning", at(now, 301*time.Second), Normal, "05:01"},
		{"warning boundary", at(now, 300*time.Second), Warning, "05:00"},
		{"critical boundary", at(now, 60*time.Second), Critical, "01:00"},
		{"just expired", at(now, -time.Second), Expired, ExpiredText},
		{"exactly now", at(now, 0), Expired, ExpiredText},
		{"no deadline", nil, Placeholder, PlaceholderText},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := Compute(tc.end, now)
			assert.Equal(t, tc.level, st.Level)
			assert.Equal(t, tc.text, st.Text)
		})
	}
}

func TestCompute_PlaceholderIgnoresElapsedTime(t *testing.T) {
	a := Compute(nil, time.Unix(0, 0))
	b := Compute(nil, time.Now().Add(24*time.Hour))
	assert.Equal(t, a, b)
}

func TestCompute_RoundsUp(t *testing.T) {
	now := time.Now()
	st := Compute(at(now, 400*time.Millisecond), now)
	assert.Equal(t, Critical, st.Level)
	assert.Equal(t, "00:01", st.Text)
}

func TestOffset_Observe(t *testing.T) {
	var o Offset
	assert.Equal(t, time.Duration(0), o.Value())

	sent := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	recv := sent.Add(200 * time.Millisecond)
	// 服务端比本地快 5 秒
	o.Observe(sent.Add(100*time.Millisecond+5*time.Second), sent, recv)
	assert.Equal(t, 5*time.Second, o.Value())

	// 后续样本平滑
	o.Observe(sent.Add(100*time.Millisecond+9*time.Second), sent, recv)
	assert.Equal(t, 6*time.Second, o.Value())

	// 无效样本忽略
	o.Observe(time.Time{}, sent, recv)
	o.Observe(sent, recv, sent)
	assert.Equal(t, 6*time.Second, o.Value())

	var nilOffset *Offset
	assert.Equal(t, time.Duration(0), nilOffset.Value())
}

func TestTimer_AppliesOffset(t *testing.T) {
	local := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	var o Offset
	o.Observe(local.Add(2*time.Minute), local, local)

	deadline := local.Add(6 * time.Minute)
	var got []State
	tm := &Timer{Interval: time.Millisecond, Offset: &o, Now: func() time.Time { return local }}
	ctx, cancel := context.WithCancel(context.Background())
	tm.Run(ctx, &deadline, func(st State) {
		got = append(got, st)
		cancel()
	})

	assert.NotEmpty(t, got)
	assert.Equal(t, Warning, got[0].Level)
	assert.Equal(t, "04:00", got[0].Text)
}

func TestTimer_StopsWhenExpired(t *testing.T) {
	now := time.Now()
	deadline := now.Add(-time.Second)
	var got []State
	tm := &Timer{Interval: time.Millisecond, Now: func() time.Time { return now }}
	tm.Run(context.Background(), &deadline, func(st State) { got = append(got, st) })
	assert.Len(t, got, 1)
	assert.Equal(t, Expired, got[0].Level)

	got = nil
	tm.Run(context.Background(), nil, func(st State) { got = append(got, st) })
	assert.Len(t, got, 1)
	assert.Equal(t, Placeholder, got[0].Level)
}
