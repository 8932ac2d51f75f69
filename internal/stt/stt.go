// Package stt is the speech-to-text boundary. Transcribers fail closed: any
// failure yields ErrorMarker as the transcript instead of an error.
package stt

import "context"

// ErrorMarker is the transcript returned when transcription failed.
const ErrorMarker = "[STT_ERROR]"

// DefaultLanguage is the language hint used when none is given.
const DefaultLanguage = "hi"

// Transcript is the result of transcribing one utterance.
type Transcript struct {
	Text    string
	Seconds float64 // audio duration as reported by the provider, 0 if unknown
}

// Failed reports whether transcription failed.
func (t Transcript) Failed() bool { return t.Text == ErrorMarker }

// Transcriber converts one recorded utterance to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, language string) Transcript
}

func failed() Transcript { return Transcript{Text: ErrorMarker} }
