package queue

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"

	"github.com/your-org/facegroup/internal/models"
)

type recordingMsg struct {
	acks, naks, terms int
}

func (m *recordingMsg) Ack() error  { m.acks++; return nil }
func (m *recordingMsg) Nak() error  { m.naks++; return nil }
func (m *recordingMsg) Term() error { m.terms++; return nil }

func TestSettle(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want recordingMsg
	}{
		{"success acks", nil, recordingMsg{acks: 1}},
		{"transient naks", errors.New("db down"), recordingMsg{naks: 1}},
		{"terminal terms", Terminal(errors.New("bad json")), recordingMsg{terms: 1}},
		{"wrapped terminal terms", fmt.Errorf("handle: %w", Terminal(errors.New("bad json"))), recordingMsg{terms: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m recordingMsg
			settle(&m, tt.err)
			assert.Equal(t, tt.want, m)
		})
	}
}

func TestTerminal_KeepsCause(t *testing.T) {
	cause := errors.New("bad json")
	err := Terminal(cause)

	assert.True(t, IsTerminal(err))
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, Terminal(nil))
	assert.False(t, IsTerminal(cause))
}

func TestFaceEventSubject(t *testing.T) {
	assert.Equal(t, "faces.face_indexed", FaceEventSubject(models.FaceEvent{Type: models.FaceEventIndexed}))
	assert.Equal(t, "faces.face_renamed", FaceEventSubject(models.FaceEvent{Type: models.FaceEventRenamed}))
}

func TestStreamConfigs(t *testing.T) {
	cfgs := streamConfigs()
	byName := map[string]jetstream.StreamConfig{}
	for _, c := range cfgs {
		byName[c.Name] = c
	}

	uploads := byName[UploadsStreamName]
	assert.Equal(t, []string{"uploads.>"}, uploads.Subjects)
	assert.Equal(t, jetstream.WorkQueuePolicy, uploads.Retention)
	assert.Equal(t, 2*time.Minute, uploads.Duplicates)

	faces := byName[FacesStreamName]
	assert.Equal(t, []string{"faces.>"}, faces.Subjects)
	assert.Equal(t, jetstream.InterestPolicy, faces.Retention)
}
