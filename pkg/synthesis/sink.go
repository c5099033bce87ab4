package synthesis

import (
	"time"

	"github.com/harunnryd/lily/pkg/frames"
)

// SegmentSink receives decoded audio chunks in arrival order and marks
// segment boundaries. It abstracts whatever plays or streams the audio.
type SegmentSink interface {
	StartSegment(segmentID string)
	Push(chunk []byte)
	EndSegment()
}

// ChannelSink adapts a frame channel into a SegmentSink. Audio chunks are
// delivered as AudioFrames, segment boundaries as control frames.
type ChannelSink struct {
	CallSID    string
	SampleRate int
	Channels   int
	Out        chan frames.Frame

	segmentID string
}

func NewChannelSink(callSID string, sampleRate int, buffer int) *ChannelSink {
	if sampleRate <= 0 {
		sampleRate = 24000
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &ChannelSink{
		CallSID:    callSID,
		SampleRate: sampleRate,
		Channels:   1,
		Out:        make(chan frames.Frame, buffer),
	}
}

func (s *ChannelSink) StartSegment(segmentID string) {
	s.segmentID = segmentID
	s.Out <- frames.NewControlFrame(segmentID, time.Now().UnixNano(), frames.ControlSegmentStart, map[string]string{
		frames.MetaCallSID: s.CallSID,
		frames.MetaSource:  "synthesis",
	})
}

func (s *ChannelSink) Push(chunk []byte) {
	meta := map[string]string{
		frames.MetaCallSID: s.CallSID,
		frames.MetaSource:  "synthesis",
	}
	s.Out <- frames.NewAudioFrameFromPool(s.segmentID, time.Now().UnixNano(), chunk, s.SampleRate, s.Channels, meta)
}

func (s *ChannelSink) EndSegment() {
	s.Out <- frames.NewControlFrame(s.segmentID, time.Now().UnixNano(), frames.ControlSegmentEnd, map[string]string{
		frames.MetaCallSID: s.CallSID,
		frames.MetaSource:  "synthesis",
	})
}

var _ SegmentSink = (*ChannelSink)(nil)
