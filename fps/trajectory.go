package fps

// TrajectoryPoint is one sample of a commanded path: an absolute angle
// in degrees and the time, in seconds from the start of the
// trajectory, at which the positioner should reach it.
type TrajectoryPoint struct {
	AngleDegrees float64 `yaml:"angle_degrees"`
	TimeSeconds  float64 `yaml:"time_seconds"`
}

// PositionerTrajectory is one positioner's full commanded path: the
// alpha and beta point sequences it must traverse together.
type PositionerTrajectory struct {
	Alpha []TrajectoryPoint `yaml:"alpha"`
	Beta  []TrajectoryPoint `yaml:"beta"`
}

// Trajectory is a whole-array trajectory: one PositionerTrajectory per
// participating positioner id.
type Trajectory map[int]PositionerTrajectory

// ValidateTrajectory checks every invariant an upload must satisfy
// before a single frame is sent: strictly increasing times per axis,
// identical start/end times between the two axes of a positioner,
// angles within [minBeta, 360) for beta when a safe-mode floor is
// configured, and every positioner id known and not disabled.
func ValidateTrajectory(t Trajectory, known map[int]*Positioner, minBeta float64) error {
	for pid, pt := range t {
		p, ok := known[pid]
		if !ok {
			return &ValidationError{Reason: "trajectory references unknown positioner"}
		}
		if p.Disabled() {
			return &ValidationError{Reason: "trajectory references disabled positioner"}
		}

		if len(pt.Alpha) == 0 || len(pt.Beta) == 0 {
			return &ValidationError{Reason: "trajectory has an empty axis sequence"}
		}

		if err := validateStrictlyIncreasing(pt.Alpha); err != nil {
			return err
		}
		if err := validateStrictlyIncreasing(pt.Beta); err != nil {
			return err
		}

		if pt.Alpha[0].TimeSeconds != pt.Beta[0].TimeSeconds {
			return &ValidationError{Reason: "trajectory alpha/beta start times differ"}
		}
		if pt.Alpha[len(pt.Alpha)-1].TimeSeconds != pt.Beta[len(pt.Beta)-1].TimeSeconds {
			return &ValidationError{Reason: "trajectory alpha/beta end times differ"}
		}

		for _, pp := range pt.Alpha {
			if pp.AngleDegrees < 0 || pp.AngleDegrees >= 360 {
				return &ValidationError{Reason: "trajectory alpha angle out of range [0, 360)"}
			}
		}
		for _, pp := range pt.Beta {
			if pp.AngleDegrees < 0 || pp.AngleDegrees >= 360 {
				return &ValidationError{Reason: "trajectory beta angle out of range [0, 360)"}
			}
			if pp.AngleDegrees < minBeta {
				return &ValidationError{Reason: "trajectory beta angle violates safe-mode floor"}
			}
		}
	}

	return nil
}

func validateStrictlyIncreasing(points []TrajectoryPoint) error {
	for i := 1; i < len(points); i++ {
		if points[i].TimeSeconds <= points[i-1].TimeSeconds {
			return &ValidationError{Reason: "trajectory times are not strictly increasing"}
		}
	}
	return nil
}

// estimatedDuration returns the time, in seconds, spanned by the
// longest of t's per-positioner sequences.
func (t Trajectory) estimatedDuration() float64 {
	var maxT float64
	for _, pt := range t {
		if n := len(pt.Alpha); n > 0 {
			if end := pt.Alpha[n-1].TimeSeconds; end > maxT {
				maxT = end
			}
		}
		if n := len(pt.Beta); n > 0 {
			if end := pt.Beta[n-1].TimeSeconds; end > maxT {
				maxT = end
			}
		}
	}
	return maxT
}
