package viewdto

// Snapshot is what the rendering layer receives after every session change.
// Renderers keep the highest Seq seen and ignore anything lower.
type Snapshot struct {
	Type     string     `json:"type"`
	Seq      uint64     `json:"seq"`
	GameID   string     `json:"gameId"`
	Source   string     `json:"source"`
	White    Player     `json:"white"`
	Black    Player     `json:"black"`
	Event    string     `json:"event,omitempty"`
	Result   string     `json:"result,omitempty"`
	Index    int        `json:"index"`
	Length   int        `json:"length"`
	FEN      string     `json:"fen"`
	LastMove string     `json:"lastMove,omitempty"`
	Moves    []MovePair `json:"moves"`
	Eval     *Eval      `json:"evaluation,omitempty"`
	Playback Playback   `json:"playback"`
	Analysis Analysis   `json:"analysis"`
	Previews []Preview  `json:"previews,omitempty"`
}

type Player struct {
	Name   string `json:"name,omitempty"`
	Rating int    `json:"rating,omitempty"`
}

type MovePair struct {
	Number int      `json:"number"`
	White  MoveRef  `json:"white"`
	Black  *MoveRef `json:"black,omitempty"`
}

type MoveRef struct {
	SAN    string `json:"san"`
	Target int    `json:"target"`
	Active bool   `json:"active,omitempty"`
}

// Eval carries centipawns and the display form (e.g. "+0.12").
type Eval struct {
	Centipawns int    `json:"cp"`
	Display    string `json:"display"`
	Ply        int    `json:"ply"`
}

type Playback struct {
	Playing bool    `json:"playing"`
	Speed   float64 `json:"speed"`
}

type Analysis struct {
	Depth        int  `json:"depth"`
	PreviewCount int  `json:"previewCount"`
	Fetching     bool `json:"fetching,omitempty"`
}

type Preview struct {
	Slot     int      `json:"slot"`
	FEN      string   `json:"fen"`
	Index    int      `json:"index"`
	Length   int      `json:"length"`
	Eval     *Eval    `json:"evaluation,omitempty"`
	Playback Playback `json:"playback"`
	Line     []string `json:"line"`
}
