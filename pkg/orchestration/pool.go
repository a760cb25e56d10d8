package orchestration

import (
	"context"
	"sync"
)

type indexedItem[T any] struct {
	index int
	item  T
}

type indexedResult[R any] struct {
	index  int
	result R
}

// fanout runs work over items with at most concurrency workers and returns
// the results in input order. Items that have not started when ctx is done
// are given skip(item) instead.
func fanout[T, R any](
	ctx context.Context,
	items []T,
	concurrency int,
	work func(ctx context.Context, item T) R,
	skip func(item T) R,
) []R {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results
	}

	if concurrency <= 1 {
		for i, item := range items {
			if ctx.Err() != nil {
				results[i] = skip(item)
				continue
			}
			results[i] = work(ctx, item)
		}
		return results
	}
	if concurrency > len(items) {
		concurrency = len(items)
	}

	itemChan := make(chan indexedItem[T], len(items))
	resultChan := make(chan indexedResult[R], len(items))

	for i, item := range items {
		itemChan <- indexedItem[T]{index: i, item: item}
	}
	close(itemChan)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for it := range itemChan {
				if ctx.Err() != nil {
					resultChan <- indexedResult[R]{index: it.index, result: skip(it.item)}
					continue
				}
				resultChan <- indexedResult[R]{index: it.index, result: work(ctx, it.item)}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for res := range resultChan {
		results[res.index] = res.result
	}
	return results
}
