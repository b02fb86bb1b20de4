package textpresenter

import (
	"github.com/park285/chessflix/internal/domain"
	"github.com/park285/chessflix/internal/movelist"
	"github.com/park285/chessflix/internal/session"
	"github.com/park285/chessflix/pkg/viewdto"
)

// ToDTOSnapshot maps a session snapshot to the view feed payload.
func ToDTOSnapshot(s session.Snapshot) *viewdto.Snapshot {
	out := &viewdto.Snapshot{
		Type:     "snapshot",
		Seq:      s.Seq,
		Playback: toDTOPlayback(s.Playback),
		Analysis: viewdto.Analysis{
			Depth:        s.Analysis.Depth,
			PreviewCount: s.Analysis.PreviewCount,
			Fetching:     s.Analysis.Fetching,
		},
	}
	if !s.HasGame {
		return out
	}
	out.GameID = s.GameID.String()
	out.Source = string(s.Source)
	out.White = viewdto.Player{Name: s.Headers.White.Name, Rating: s.Headers.White.Rating}
	out.Black = viewdto.Player{Name: s.Headers.Black.Name, Rating: s.Headers.Black.Rating}
	out.Event = s.Headers.Event
	out.Result = s.Headers.Result
	out.Index = s.Index
	out.Length = s.Length
	out.FEN = s.FEN
	if s.LastMove != nil {
		out.LastMove = s.LastMove.SAN
	}
	out.Moves = ToDTOPairs(s.Pairs)
	out.Eval = toDTOEval(s.Eval)
	for _, p := range s.Previews {
		line := p.Game.SANs()
		out.Previews = append(out.Previews, viewdto.Preview{
			Slot:     p.Slot,
			FEN:      p.FEN,
			Index:    p.Index,
			Length:   p.Game.Len(),
			Eval:     toDTOEval(p.Eval),
			Playback: toDTOPlayback(p.Playback),
			Line:     line,
		})
	}
	return out
}

func ToDTOPairs(pairs []movelist.Pair) []viewdto.MovePair {
	out := make([]viewdto.MovePair, 0, len(pairs))
	for _, p := range pairs {
		mp := viewdto.MovePair{Number: p.Number, White: toDTOMoveRef(p.White)}
		if p.Black != nil {
			b := toDTOMoveRef(*p.Black)
			mp.Black = &b
		}
		out = append(out, mp)
	}
	return out
}

func toDTOMoveRef(p movelist.Ply) viewdto.MoveRef {
	return viewdto.MoveRef{SAN: p.SAN, Target: p.Target, Active: p.Active}
}

func toDTOEval(rec *domain.EvaluationRecord) *viewdto.Eval {
	if rec == nil {
		return nil
	}
	return &viewdto.Eval{Centipawns: rec.Centipawns, Display: Pawns(rec.Centipawns), Ply: rec.Ply}
}

func toDTOPlayback(p domain.PlaybackState) viewdto.Playback {
	return viewdto.Playback{Playing: p.Playing, Speed: p.Speed}
}
