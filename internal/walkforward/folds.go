// Package walkforward drives repeated train-on-past, test-on-future
// evaluation over a bar calendar with strictly non-overlapping windows.
package walkforward

import (
	"errors"
	"fmt"

	"tradesim-lab/internal/domain"
)

// ErrLeakage marks a fold whose train window reaches into its test window.
// Any result computed downstream of such a fold is untrustworthy, so the
// violation is fatal: detected eagerly and never silently corrected.
var ErrLeakage = errors.New("walk-forward leakage: train window extends into test window")

// ErrFoldConfig marks an unusable fold configuration.
var ErrFoldConfig = errors.New("invalid fold configuration")

// FoldConfig controls fold generation.
type FoldConfig struct {
	TrainLength int // bars in each train window
	TestLength  int // bars in each test window
	StepLength  int // bars each fold advances

	// GapBars inserts a gap between train end and test start to avoid
	// boundary leakage. Zero means test starts exactly at train end.
	GapBars int

	// Folds below these sample counts are skipped and tallied, not dropped
	// silently. Zero disables the corresponding check.
	MinTrainSamples int
	MinTestSamples  int
}

// GenerateFolds partitions a calendar of totalBars into ordered folds.
// Fold i trains on [i*step, i*step+train) and tests on the following
// [train_end+gap, train_end+gap+test). Folds whose test window would run
// past the calendar are not generated.
func GenerateFolds(totalBars int, cfg FoldConfig) ([]domain.WalkForwardFold, error) {
	if cfg.TrainLength <= 0 || cfg.TestLength <= 0 || cfg.StepLength <= 0 {
		return nil, fmt.Errorf("%w: train=%d test=%d step=%d",
			ErrFoldConfig, cfg.TrainLength, cfg.TestLength, cfg.StepLength)
	}
	if cfg.GapBars < 0 {
		return nil, fmt.Errorf("%w: gap=%d", ErrFoldConfig, cfg.GapBars)
	}

	var folds []domain.WalkForwardFold
	for i := 0; ; i++ {
		trainStart := i * cfg.StepLength
		trainEnd := trainStart + cfg.TrainLength
		testStart := trainEnd + cfg.GapBars
		testEnd := testStart + cfg.TestLength
		if testEnd > totalBars {
			break
		}
		folds = append(folds, domain.WalkForwardFold{
			FoldIndex:  i,
			TrainStart: trainStart,
			TrainEnd:   trainEnd,
			TestStart:  testStart,
			TestEnd:    testEnd,
		})
	}

	if err := ValidateFolds(folds); err != nil {
		return nil, err
	}
	return folds, nil
}

// ValidateFolds rejects leakage and overlapping test ranges.
// Used both after generation and on externally supplied folds.
func ValidateFolds(folds []domain.WalkForwardFold) error {
	for i, f := range folds {
		if f.TrainEnd > f.TestStart {
			return fmt.Errorf("%w: fold %d train_end=%d test_start=%d",
				ErrLeakage, f.FoldIndex, f.TrainEnd, f.TestStart)
		}
		if f.TrainStart >= f.TrainEnd || f.TestStart >= f.TestEnd {
			return fmt.Errorf("%w: fold %d has an empty window", ErrFoldConfig, f.FoldIndex)
		}
		if i > 0 && f.TestStart < folds[i-1].TestEnd {
			return fmt.Errorf("%w: fold %d test range overlaps fold %d",
				ErrFoldConfig, f.FoldIndex, folds[i-1].FoldIndex)
		}
	}
	return nil
}
