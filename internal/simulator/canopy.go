package simulator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"bipv_simulator/internal/kpi"
	"bipv_simulator/internal/model"
	"bipv_simulator/internal/results"
	"bipv_simulator/internal/technology"
)

// Job is one building's full multi-decade simulation.
type Job struct {
	Building *Building
	Options  Options
	Years    model.YearRange

	// Resume continues from a previous run; Years.Start must be the year
	// after Resume.LastYear.
	Resume *BuildingState
}

// Outcome is the result of one Job.
type Outcome struct {
	BuildingID string
	Result     results.Result
	Indicators kpi.Indicators
	State      BuildingState
	Err        error
}

// RunCanopy simulates independent buildings on a pool of workers. Each worker
// owns its simulator; the catalog is only read. Cancellation is checked
// between buildings, never inside a building's yearly loop. Outcomes are
// returned in job order, together with the joined errors of failed jobs.
func RunCanopy(ctx context.Context, jobs []Job, workers int, catalog *technology.Catalog, cb Callback, logger *log.Logger) ([]Outcome, error) {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = log.Default()
	}

	outcomes := make([]Outcome, len(jobs))
	next := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				if err := ctx.Err(); err != nil {
					outcomes[i] = Outcome{BuildingID: jobs[i].Building.ID, Err: err}
					continue
				}
				outcomes[i] = runJob(jobs[i], catalog, cb)
				if outcomes[i].Err != nil {
					logger.Printf("[%s] simulation failed: %v", jobs[i].Building.ID, outcomes[i].Err)
				} else {
					logger.Printf("[%s] simulated %d-%d", jobs[i].Building.ID, jobs[i].Years.Start, jobs[i].Years.End)
				}
				if cb != nil {
					cb.OnBuilding(outcomes[i])
				}
			}
		}()
	}

	for i := range jobs {
		next <- i
	}
	close(next)
	wg.Wait()

	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("building %s: %w", o.BuildingID, o.Err))
		}
	}
	return outcomes, errors.Join(errs...)
}

func runJob(job Job, catalog *technology.Catalog, cb Callback) Outcome {
	out := Outcome{BuildingID: job.Building.ID}
	sim := New(job.Building, job.Options, cb)

	resume := job.Resume != nil
	if resume {
		if err := sim.Restore(*job.Resume, catalog); err != nil {
			out.Err = err
			return out
		}
	}
	if err := sim.Run(job.Years.Start, job.Years.End, resume); err != nil {
		out.Err = err
		return out
	}

	out.Result = sim.Result()
	ind, err := kpi.Compute(out.Result.Tree)
	if err != nil {
		out.Err = err
		return out
	}
	out.Indicators = ind
	if out.State, err = sim.Snapshot(); err != nil {
		out.Err = err
	}
	return out
}

// Aggregate sums the results of successful outcomes onto a common year axis.
func Aggregate(outcomes []Outcome) (results.Result, error) {
	var rs []results.Result
	for _, o := range outcomes {
		if o.Err == nil {
			rs = append(rs, o.Result)
		}
	}
	return results.Sum(rs...)
}
