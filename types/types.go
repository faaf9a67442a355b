package types

import "fmt"

// State is one step of the linear pipeline state machine.
type State string

const (
	StateInit           State = "Init"
	StateDownloaded     State = "Downloaded"
	StateConvertedAudio State = "ConvertedAudio"
	StateTranscribed    State = "Transcribed"
	StateSummarized     State = "Summarized"
	StateOutlined       State = "Outlined"
	StateContent        State = "Content"
	StateHeaderImage    State = "HeaderImage"
	StateCompleted      State = "Completed"
	StateFailed         State = "Failed"
)

// Checkpoints maps each state to its fixed progress percentage.
// These values are the only ones a progress subscriber will ever see.
var Checkpoints = map[State]float64{
	StateInit:           0,
	StateDownloaded:     12.5,
	StateConvertedAudio: 25,
	StateTranscribed:    37.5,
	StateSummarized:     50,
	StateOutlined:       62.5,
	StateContent:        75,
	StateHeaderImage:    87.5,
	StateCompleted:      100,
}

// Job is one user-initiated pipeline run. It lives for the duration of the
// run; the only state that survives it is the artifact files on disk.
type Job struct {
	ID    string `json:"id"`
	Base  string `json:"base"` // filesystem-safe stem shared by every artifact
	Title string `json:"title"`
	State State  `json:"state"`
}

// Result is what a completed run hands back to the caller.
type Result struct {
	Title       string `json:"title"`
	Transcript  string `json:"transcript"`
	Summary     string `json:"summary"` // rendered HTML
	Blog        string `json:"blog"`    // assembled HTML document
	HeaderImage string `json:"header_image"`
}

// ErrKind classifies a stage failure.
type ErrKind string

const (
	ErrInvalidInput  ErrKind = "invalid_input"
	ErrAcquisition   ErrKind = "acquisition"
	ErrConversion    ErrKind = "conversion"
	ErrTranscription ErrKind = "transcription"
	ErrGeneration    ErrKind = "generation"
	ErrAssembly      ErrKind = "assembly"
)

// StageError is the single failure type crossing stage boundaries. The
// orchestrator stops at the first one and surfaces Message verbatim.
type StageError struct {
	Kind    ErrKind
	Message string
	Err     error
}

func (e *StageError) Error() string {
	return e.Message
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Stagef builds a StageError with a formatted message. The wrapped error, if
// any, must be the last argument and is also kept for unwrapping.
func Stagef(kind ErrKind, format string, args ...any) *StageError {
	var wrapped error
	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			wrapped = err
		}
	}
	return &StageError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     wrapped,
	}
}
