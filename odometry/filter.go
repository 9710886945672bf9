package odometry

import "gonum.org/v1/gonum/mat"

// PoseFilter is a Kalman filter over [x, y, theta] with diagonal covariance.
// The three axes are filtered independently; off-diagonal terms are never
// populated. Not safe for concurrent use.
type PoseFilter struct {
	state *mat.VecDense
	p     *mat.DiagDense // error covariance
	q     *mat.DiagDense // process noise
	r     *mat.DiagDense // measurement noise
}

var (
	initialCovariance = []float64{1, 1, 0.1}
	processNoise      = []float64{0.01, 0.01, 0.001}
	measurementNoise  = []float64{0.1, 0.1, 0.01}
)

// NewPoseFilter returns a filter at the origin with the default noise model.
func NewPoseFilter() *PoseFilter {
	f := &PoseFilter{
		q: mat.NewDiagDense(3, append([]float64(nil), processNoise...)),
		r: mat.NewDiagDense(3, append([]float64(nil), measurementNoise...)),
	}
	f.Reset()
	return f
}

// Reset returns the state to the origin and the covariance to its initial value.
func (f *PoseFilter) Reset() {
	f.state = mat.NewVecDense(3, nil)
	f.p = mat.NewDiagDense(3, append([]float64(nil), initialCovariance...))
}

// Predict applies an additive motion step and grows the covariance by Q.
func (f *PoseFilter) Predict(deltaX, deltaY, deltaTheta float64) {
	delta := [3]float64{deltaX, deltaY, deltaTheta}
	for i := 0; i < 3; i++ {
		f.state.SetVec(i, f.state.AtVec(i)+delta[i])
		f.p.SetDiag(i, f.p.At(i, i)+f.q.At(i, i))
	}
}

// Update corrects the state towards an external measurement.
func (f *PoseFilter) Update(measurement Pose) {
	z := [3]float64{measurement.X, measurement.Y, measurement.Theta}
	for i := 0; i < 3; i++ {
		p := f.p.At(i, i)
		k := p / (p + f.r.At(i, i))

		x := f.state.AtVec(i)
		f.state.SetVec(i, x+k*(z[i]-x))
		f.p.SetDiag(i, (1-k)*p)
	}
}

// State returns the filtered pose.
func (f *PoseFilter) State() Pose {
	return Pose{X: f.state.AtVec(0), Y: f.state.AtVec(1), Theta: f.state.AtVec(2)}
}

// Variance returns the diagonal of the error covariance.
func (f *PoseFilter) Variance() [3]float64 {
	return [3]float64{f.p.At(0, 0), f.p.At(1, 1), f.p.At(2, 2)}
}
