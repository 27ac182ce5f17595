package domain

// WalkForwardFold is one (train, test) window pair over a bar calendar.
// Indices are half-open: train covers [TrainStart, TrainEnd), test covers
// [TestStart, TestEnd). Invariant: TrainEnd <= TestStart; folds are generated
// in increasing time order with non-overlapping test ranges.
type WalkForwardFold struct {
	FoldIndex  int
	TrainStart int
	TrainEnd   int
	TestStart  int
	TestEnd    int
}

// Fold skip reason codes, surfaced in run tallies.
const (
	SkipReasonTrainTooSmall = "TRAIN_TOO_SMALL"
	SkipReasonTestTooSmall  = "TEST_TOO_SMALL"
	SkipReasonNoSignals     = "NO_SIGNALS"
)
