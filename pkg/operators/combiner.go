package operators

import (
	"fmt"
	"reflect"

	"github.com/mnohosten/laura-flow/pkg/cache"
	"github.com/mnohosten/laura-flow/pkg/changeset"
	"github.com/mnohosten/laura-flow/pkg/stream"
)

// CombineOperator selects the set-combination rule applied across sources
type CombineOperator int

const (
	// And keeps keys present in every source
	And CombineOperator = iota

	// Or keeps keys present in any source
	Or

	// Xor keeps keys present in exactly one source
	Xor

	// Except keeps keys present in the first source and in no other
	Except
)

// String returns a human readable name for the operator
func (op CombineOperator) String() string {
	switch op {
	case And:
		return "And"
	case Or:
		return "Or"
	case Xor:
		return "Xor"
	case Except:
		return "Except"
	default:
		return fmt.Sprintf("CombineOperator(%d)", int(op))
	}
}

// CombineOption configures a combiner
type CombineOption[T any] func(*combineOptions[T])

// combineOptions holds resolved combiner configuration
type combineOptions[T any] struct {
	eq func(a, b T) bool
}

// WithEquality overrides the equality used to suppress redundant updates.
// The default is structural equality
func WithEquality[T any](eq func(a, b T) bool) CombineOption[T] {
	return func(o *combineOptions[T]) {
		o.eq = eq
	}
}

// resolveCombineOptions applies options over the defaults
func resolveCombineOptions[T any](opts []CombineOption[T]) combineOptions[T] {
	resolved := combineOptions[T]{
		eq: func(a, b T) bool { return reflect.DeepEqual(a, b) },
	}
	for _, opt := range opts {
		opt(&resolved)
	}
	return resolved
}

// mergeContainer holds one inner source: its subscription and a mirror kept
// current by applying the source's own change sets
type mergeContainer[T any, K comparable] struct {
	mirror    *cache.Cache[T, K]
	sub       stream.Disposable
	completed bool
}

// combiner is the shared state machine behind Combine and CombineDynamic.
// All methods run as serialized dispatcher reactions
type combiner[T any, K comparable] struct {
	op         CombineOperator
	eq         func(a, b T) bool
	containers []*mergeContainer[T, K]
	result     *cache.ChangeAwareCache[T, K]
	g          *gate[changeset.ChangeSet[T, K]]
	parentDone bool
}

// matches evaluates the membership predicate for a key across the current
// sources. With no sources every key is out
func (c *combiner[T, K]) matches(key K) bool {
	if len(c.containers) == 0 {
		return false
	}
	switch c.op {
	case And:
		for _, container := range c.containers {
			if !container.mirror.Contains(key) {
				return false
			}
		}
		return true
	case Or:
		for _, container := range c.containers {
			if container.mirror.Contains(key) {
				return true
			}
		}
		return false
	case Xor:
		count := 0
		for _, container := range c.containers {
			if container.mirror.Contains(key) {
				count++
			}
		}
		return count == 1
	case Except:
		if !c.containers[0].mirror.Contains(key) {
			return false
		}
		for _, container := range c.containers[1:] {
			if container.mirror.Contains(key) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// valueFor returns the value for a key from the first source carrying it
func (c *combiner[T, K]) valueFor(key K) (T, bool) {
	for _, container := range c.containers {
		if value, ok := container.mirror.Lookup(key).Value(); ok {
			return value, true
		}
	}
	var zero T
	return zero, false
}

// processKey reconciles one key against the result cache. candidate is the
// preferred value when the key should be present; without one the value is
// looked up across sources
func (c *combiner[T, K]) processKey(key K, candidate T, hasCandidate bool) {
	shouldBe := c.matches(key)
	cached, isIn := c.result.Lookup(key).Value()

	if !shouldBe {
		if isIn {
			c.result.Remove(key)
		}
		return
	}

	value := candidate
	if !hasCandidate {
		found, ok := c.valueFor(key)
		if !ok {
			// Sources mutated away underneath; nothing to publish
			if isIn {
				c.result.Remove(key)
			}
			return
		}
		value = found
	}

	if !isIn {
		c.result.AddOrUpdate(value, key)
		return
	}
	if !c.eq(cached, value) {
		c.result.AddOrUpdate(value, key)
	}
}

// reevaluate reconciles a batch of keys without a candidate value
func (c *combiner[T, K]) reevaluate(keys []K) {
	for _, key := range keys {
		c.processKey(key, *new(T), false)
	}
}

// react folds one change set of an inner source: the mirror is brought
// current first, then every touched key is reconciled
func (c *combiner[T, K]) react(container *mergeContainer[T, K], cs changeset.ChangeSet[T, K]) {
	for _, change := range cs.Changes() {
		switch change.Reason {
		case changeset.Add, changeset.Update:
			container.mirror.AddOrUpdate(change.Current, change.Key)
			c.processKey(change.Key, change.Current, true)
		case changeset.Remove:
			container.mirror.Remove(change.Key)
			c.processKey(change.Key, *new(T), false)
		case changeset.Refresh:
			if c.result.Contains(change.Key) {
				c.result.Refresh(change.Key)
			}
		}
	}
	c.emit()
}

// emit captures and forwards the net effect of a reaction
func (c *combiner[T, K]) emit() {
	if captured := c.result.CaptureChanges(); !captured.IsEmpty() {
		c.g.next(captured)
	}
}

// addContainer subscribes an inner source at the given position. The
// source's initial change set is processed as its own queued reaction, after
// which And and Except re-check every key already in the result, because a
// new source can evict previously matching keys
func (c *combiner[T, K]) addContainer(d *dispatcher, index int, src stream.Observable[changeset.ChangeSet[T, K]], onDone func()) {
	container := &mergeContainer[T, K]{mirror: cache.New[T, K]()}
	if index < 0 || index > len(c.containers) {
		index = len(c.containers)
	}
	c.containers = append(c.containers, nil)
	copy(c.containers[index+1:], c.containers[index:])
	c.containers[index] = container

	container.sub = src.Subscribe(through(d, stream.NewObserver(
		func(cs changeset.ChangeSet[T, K]) {
			c.react(container, cs)
		},
		func(err error) {
			c.g.fail(err)
			c.teardown()
		},
		func() {
			container.completed = true
			onDone()
		},
	)))

	if c.op == And || c.op == Except {
		d.enqueue(func() {
			c.reevaluate(c.result.Keys())
			c.emit()
		})
	}
}

// removeContainer drops an inner source and reconciles everything it was
// contributing. And and Except re-check all keys across remaining sources
func (c *combiner[T, K]) removeContainer(index int) {
	if index < 0 || index >= len(c.containers) {
		return
	}
	container := c.containers[index]
	c.containers = append(c.containers[:index], c.containers[index+1:]...)
	container.sub.Dispose()

	keys := container.mirror.Keys()
	if c.op == And || c.op == Except {
		seen := make(map[K]bool, len(keys))
		for _, key := range keys {
			seen[key] = true
		}
		for _, remaining := range c.containers {
			for _, key := range remaining.mirror.Keys() {
				if !seen[key] {
					seen[key] = true
					keys = append(keys, key)
				}
			}
		}
	}
	c.reevaluate(keys)
	c.emit()
}

// teardown disposes every inner subscription
func (c *combiner[T, K]) teardown() {
	for _, container := range c.containers {
		if container.sub != nil {
			container.sub.Dispose()
		}
	}
}

// maybeComplete completes downstream once the source list and every inner
// source have completed
func (c *combiner[T, K]) maybeComplete() {
	if !c.parentDone {
		return
	}
	for _, container := range c.containers {
		if !container.completed {
			return
		}
	}
	c.g.complete()
}

// Combine applies a set-combination across a fixed collection of keyed
// sources. The result contains exactly the keys the operator's membership
// predicate admits
func Combine[T any, K comparable](
	op CombineOperator,
	sources []stream.Observable[changeset.ChangeSet[T, K]],
	opts ...CombineOption[T],
) (stream.Observable[changeset.ChangeSet[T, K]], error) {
	for _, src := range sources {
		if src == nil {
			return nil, stream.ErrNilSource
		}
	}
	options := resolveCombineOptions(opts)

	return stream.Create(func(observer stream.Observer[changeset.ChangeSet[T, K]]) stream.Disposable {
		d := &dispatcher{}
		c := &combiner[T, K]{
			op:         op,
			eq:         options.eq,
			result:     cache.NewChangeAware[T, K](),
			g:          &gate[changeset.ChangeSet[T, K]]{observer: observer},
			parentDone: true,
		}

		for i, src := range sources {
			c.addContainer(d, i, src, c.maybeComplete)
		}
		if len(sources) == 0 {
			d.enqueue(c.maybeComplete)
		}

		return stream.NewComposite(
			stream.NewDisposable(c.teardown),
			stream.NewDisposable(func() {
				d.enqueue(c.g.close)
			}),
		)
	}), nil
}

// CombineDynamic applies a set-combination across an observable list of
// keyed sources. Sources added to the list join the combination; sources
// removed leave it, withdrawing their influence
func CombineDynamic[T any, K comparable](
	op CombineOperator,
	sources stream.Observable[changeset.ListChangeSet[stream.Observable[changeset.ChangeSet[T, K]]]],
	opts ...CombineOption[T],
) (stream.Observable[changeset.ChangeSet[T, K]], error) {
	if sources == nil {
		return nil, stream.ErrNilSource
	}
	options := resolveCombineOptions(opts)

	return stream.Create(func(observer stream.Observer[changeset.ChangeSet[T, K]]) stream.Disposable {
		d := &dispatcher{}
		c := &combiner[T, K]{
			op:     op,
			eq:     options.eq,
			result: cache.NewChangeAware[T, K](),
			g:      &gate[changeset.ChangeSet[T, K]]{observer: observer},
		}

		parentSub := sources.Subscribe(through(d, stream.NewObserver(
			func(cs changeset.ListChangeSet[stream.Observable[changeset.ChangeSet[T, K]]]) {
				for _, change := range cs.Changes() {
					switch change.Reason {
					case changeset.ListAdd:
						c.addContainer(d, change.Item.CurrentIndex, change.Item.Current, c.maybeComplete)
					case changeset.ListAddRange:
						for i, src := range change.Range.Items {
							c.addContainer(d, change.Range.Index+i, src, c.maybeComplete)
						}
					case changeset.ListRemove:
						c.removeContainer(change.Item.CurrentIndex)
					case changeset.ListRemoveRange:
						for range change.Range.Items {
							c.removeContainer(change.Range.Index)
						}
					case changeset.ListReplace:
						c.removeContainer(change.Item.CurrentIndex)
						c.addContainer(d, change.Item.CurrentIndex, change.Item.Current, c.maybeComplete)
					case changeset.ListMoved:
						from, to := change.Item.PreviousIndex, change.Item.CurrentIndex
						if from >= 0 && from < len(c.containers) && to >= 0 && to < len(c.containers) && from != to {
							container := c.containers[from]
							c.containers = append(c.containers[:from], c.containers[from+1:]...)
							c.containers = append(c.containers, nil)
							copy(c.containers[to+1:], c.containers[to:len(c.containers)-1])
							c.containers[to] = container
							// Order matters for Except and first-wins values
							c.reevaluate(c.result.Keys())
							c.reevaluate(container.mirror.Keys())
							c.emit()
						}
					case changeset.ListClear:
						for len(c.containers) > 0 {
							c.removeContainer(0)
						}
					}
				}
			},
			func(err error) {
				c.g.fail(err)
				c.teardown()
			},
			func() {
				c.parentDone = true
				c.maybeComplete()
			},
		)))

		return stream.NewComposite(
			parentSub,
			stream.NewDisposable(c.teardown),
			stream.NewDisposable(func() {
				d.enqueue(c.g.close)
			}),
		)
	}), nil
}
