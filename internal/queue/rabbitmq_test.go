package queue

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestPublishingFor(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	names := defaultTopology()

	tests := []struct {
		name           string
		notBefore      *time.Time
		notAfter       *time.Time
		canDelay       bool
		wantExchange   string
		wantDelay      int64
		wantExpiration string
	}{
		{name: "immediate", wantExchange: DefaultExchangeName},
		{name: "future not_before with plugin", notBefore: timePtr(now.Add(90 * time.Second)), canDelay: true,
			wantExchange: DefaultDelayedExchangeName, wantDelay: 90_000},
		{name: "future not_before without plugin", notBefore: timePtr(now.Add(time.Minute)), wantExchange: DefaultExchangeName},
		{name: "past not_before", notBefore: timePtr(now.Add(-time.Minute)), canDelay: true, wantExchange: DefaultExchangeName},
		{name: "not_after sets expiration", notAfter: timePtr(now.Add(15 * time.Minute)),
			wantExchange: DefaultExchangeName, wantExpiration: "900000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			task := NewTask(TaskTypeScheduleAll, nil)
			task.NotBefore = tt.notBefore
			task.NotAfter = tt.notAfter

			exchange, msg, err := publishingFor(task, now, names, tt.canDelay)
			if err != nil {
				t.Fatalf("publishingFor() error = %v", err)
			}
			if exchange != tt.wantExchange {
				t.Errorf("exchange = %q, want %q", exchange, tt.wantExchange)
			}
			if msg.Expiration != tt.wantExpiration {
				t.Errorf("Expiration = %q, want %q", msg.Expiration, tt.wantExpiration)
			}
			if tt.wantDelay != 0 {
				if got, _ := msg.Headers["x-delay"].(int64); got != tt.wantDelay {
					t.Errorf("x-delay = %v, want %d", msg.Headers["x-delay"], tt.wantDelay)
				}
			} else if _, ok := msg.Headers["x-delay"]; ok {
				t.Error("unexpected x-delay header")
			}
			if msg.MessageId != task.ID.String() || msg.Type != string(TaskTypeScheduleAll) {
				t.Errorf("unexpected message metadata: id=%s type=%s", msg.MessageId, msg.Type)
			}
		})
	}
}

func TestDecodeTask(t *testing.T) {
	t.Parallel()

	jobID := uuid.New()
	valid := NewTask(TaskTypeScheduleJob, &jobID)
	validBody, err := json.Marshal(valid)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	expired := NewTask(TaskTypeRollbackElapsed, nil)
	expired.NotAfter = timePtr(time.Now().Add(-time.Minute))
	expiredBody, err := json.Marshal(expired)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	task, err := decodeTask(validBody)
	if err != nil || task == nil {
		t.Fatalf("decodeTask(valid) = (%v, %v)", task, err)
	}
	if task.JobID == nil || *task.JobID != jobID {
		t.Errorf("JobID = %v, want %s", task.JobID, jobID)
	}

	if task, err := decodeTask(expiredBody); task != nil || err != nil {
		t.Errorf("decodeTask(expired) = (%v, %v), want (nil, nil)", task, err)
	}

	for _, body := range []string{"not json", `{"id":"` + uuid.NewString() + `"}`} {
		if _, err := decodeTask([]byte(body)); !errors.Is(err, errUndecodable) {
			t.Errorf("decodeTask(%q) error = %v, want errUndecodable", body, err)
		}
	}
}

func TestBackoff(t *testing.T) {
	t.Parallel()
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second, 30 * time.Second}
	for i, w := range want {
		if got := backoff(i + 1); got != w {
			t.Errorf("backoff(%d) = %s, want %s", i+1, got, w)
		}
	}
}
