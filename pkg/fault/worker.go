package fault

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// GroupReport is the analysis outcome for every bit group, keyed by group
// number and then by bit name.
type GroupReport map[int]map[string]*FaultBit

// AnalyzeGroups evaluates every bit group, fanning the groups out over the
// given number of workers. Groups are independent of each other; the shared
// design query is the only state they touch, so it must be concurrency safe
// (see design.Cached). onGroup, if set, is called once per finished group.
func (a *Analyzer) AnalyzeGroups(ctx context.Context, groups map[int]BitGroup, workers int, onGroup func()) (GroupReport, error) {
	if workers < 1 {
		workers = 1
	}

	report := make(GroupReport, len(groups))
	var mu sync.Mutex

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for num, group := range groups {
		num, group := num, group
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			result := a.AnalyzeGroup(group)

			mu.Lock()
			report[num] = result
			mu.Unlock()
			if onGroup != nil {
				onGroup()
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}
