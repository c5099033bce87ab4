package synthesis

// Request is the client→provider message, one per text fragment.
// RequestIDs are 1-based and strictly increasing within a segment.
type Request struct {
	VoiceID      string `json:"voice_id"`
	Data         string `json:"data"`
	RequestID    int    `json:"request_id"`
	SampleRate   int    `json:"sample_rate"`
	Precision    string `json:"precision"`
	OutputFormat string `json:"output_format"`
}

type serverMessage struct {
	Type         string `json:"type"`
	AudioContent string `json:"audio_content"`
	RequestID    int    `json:"request_id"`
}

const (
	messageTypeAudio    = "audio"
	messageTypeAudioEnd = "audio_end"
)
