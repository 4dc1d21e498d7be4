package game

// CuePlayer plays the engine's feedback cues: a looping background track
// while a question is open and a one-shot match/mismatch cue when a round
// resolves. The engine guarantees StopAll before it tears down or hands
// control back.
type CuePlayer interface {
	PlayBackground()
	PlayMatch()
	PlayMismatch()
	StopAll()
}

// NopCues is the silent CuePlayer.
type NopCues struct{}

func (NopCues) PlayBackground() {}
func (NopCues) PlayMatch()      {}
func (NopCues) PlayMismatch()   {}
func (NopCues) StopAll()        {}
