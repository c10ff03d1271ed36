package scene

import (
	"math"
	"time"

	"ace/utils"

	"github.com/go-gl/mathgl/mgl32"
)

// Smoother hides snaps in drawn positions. While the drawn position is
// within CorrectionRate of the true one it is drawn exactly; past that it
// catches up by at most CorrectionRate per 60 Hz frame.
type Smoother struct {
	CorrectionRate float32

	drawn map[uint16]mgl32.Vec3
}

func NewSmoother(correctionRate float32) *Smoother {
	return &Smoother{
		CorrectionRate: correctionRate,
		drawn:          make(map[uint16]mgl32.Vec3),
	}
}

// Position returns where to draw entity index whose true position is
// target, elapsed after the previous call.
func (s *Smoother) Position(index uint16, target mgl32.Vec3, elapsed time.Duration) mgl32.Vec3 {
	last, ok := s.drawn[index]
	if !ok {
		s.drawn[index] = target
		return target
	}

	movement := utils.Min(float32(elapsed.Seconds()*60)*s.CorrectionRate, s.CorrectionRate)
	drawn := mgl32.Vec3{
		correct(last.X(), target.X(), movement, s.CorrectionRate),
		correct(last.Y(), target.Y(), movement, s.CorrectionRate),
		correct(last.Z(), target.Z(), movement, s.CorrectionRate),
	}
	s.drawn[index] = drawn
	return drawn
}

func (s *Smoother) Forget(index uint16) {
	delete(s.drawn, index)
}

func correct(last, target, movement, rate float32) float32 {
	if math.Abs(float64(target-last)) <= float64(rate) {
		return target
	}
	if target > last {
		return last + movement
	}
	return last - movement
}
