package biometric

import "sync"

// behavioralLearningRate is the exponential smoothing factor for profile
// updates. The profile is an online estimator: no historical session data is
// retained, bounding memory to O(users).
const behavioralLearningRate = 0.1

// behavioralZeroDeviation is the average dwell/flight deviation (same unit
// as the input, typically milliseconds) at which confidence reaches zero.
const behavioralZeroDeviation = 100.0

// TimingProfile is one user's drifting keystroke-timing baseline. Owned
// exclusively by the BehavioralEngine's profile table; no external mutation
// path.
type TimingProfile struct {
	DwellMean  float64 `json:"dwell_mean"`
	FlightMean float64 `json:"flight_mean"`
	Confidence float64 `json:"confidence"`
	Samples    int     `json:"samples"`
}

// BehavioralEngine maintains per-user keystroke timing profiles and scores
// new sessions against them. It is independent of the biometric modalities:
// different signal, continuously updated rather than explicitly retrained.
// Only timing vectors are processed; the characters typed never reach it.
//
// Updates are serialized under the profile-table lock (the smoothing update
// is not commutative under concurrent application); reads run concurrently.
type BehavioralEngine struct {
	mu       sync.RWMutex
	profiles map[string]*TimingProfile
}

// NewBehavioralEngine creates an engine with an empty profile table.
func NewBehavioralEngine() *BehavioralEngine {
	return &BehavioralEngine{profiles: make(map[string]*TimingProfile)}
}

// sessionMeans extracts the mean dwell and flight times of a session.
// A session with no usable events is malformed.
func sessionMeans(session []TimingEvent) (dwell, flight float64, ok bool) {
	if len(session) == 0 {
		return 0, 0, false
	}
	for _, ev := range session {
		dwell += ev.Dwell
		flight += ev.Flight
	}
	n := float64(len(session))
	return dwell / n, flight / n, true
}

// UpdateProfile folds a typing session into the user's profile. The first
// observation initializes the profile directly from the session's means with
// neutral confidence; later sessions update via exponential smoothing.
// Returns false for an empty or malformed session, never an error.
func (be *BehavioralEngine) UpdateProfile(userID string, session []TimingEvent) bool {
	dwellMean, flightMean, ok := sessionMeans(session)
	if !ok {
		return false
	}

	be.mu.Lock()
	defer be.mu.Unlock()

	profile, exists := be.profiles[userID]
	if !exists {
		be.profiles[userID] = &TimingProfile{
			DwellMean:  dwellMean,
			FlightMean: flightMean,
			Confidence: 0.5,
			Samples:    1,
		}
		return true
	}

	profile.DwellMean = profile.DwellMean*(1-behavioralLearningRate) + dwellMean*behavioralLearningRate
	profile.FlightMean = profile.FlightMean*(1-behavioralLearningRate) + flightMean*behavioralLearningRate
	profile.Samples++
	return true
}

// VerifyUser scores a session against the stored profile in [0,1]. An
// unknown user or empty session yields a neutral 0.5: absence of data is an
// advisory signal, never a hard rejection. Deviation maps linearly to
// confidence, reaching zero at behavioralZeroDeviation.
func (be *BehavioralEngine) VerifyUser(userID string, session []TimingEvent) float64 {
	be.mu.RLock()
	profile, exists := be.profiles[userID]
	var dwellBase, flightBase float64
	if exists {
		dwellBase, flightBase = profile.DwellMean, profile.FlightMean
	}
	be.mu.RUnlock()

	if !exists {
		return 0.5
	}
	dwellMean, flightMean, ok := sessionMeans(session)
	if !ok {
		return 0.5
	}

	avgDev := (abs(dwellMean-dwellBase) + abs(flightMean-flightBase)) / 2
	confidence := 1 - avgDev/behavioralZeroDeviation
	if confidence < 0 {
		confidence = 0
	}
	return roundTo(confidence, 2)
}

// Profile returns a copy of the user's profile, if one exists.
func (be *BehavioralEngine) Profile(userID string) (TimingProfile, bool) {
	be.mu.RLock()
	defer be.mu.RUnlock()
	if p, ok := be.profiles[userID]; ok {
		return *p, true
	}
	return TimingProfile{}, false
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
