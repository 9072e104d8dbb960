package dom

import "golang.org/x/net/html"

// MutationType distinguishes the kinds of change a record describes.
type MutationType string

const (
	ChildList  MutationType = "childList"
	Attributes MutationType = "attributes"
)

// MutationRecord describes one change to the tree.
type MutationRecord struct {
	Type          MutationType
	Target        *html.Node
	AddedNodes    []*html.Node
	RemovedNodes  []*html.Node
	AttributeName string
	OldValue      string
}

// MutationBatch is the ordered set of records delivered to an observer in one
// callback.
type MutationBatch []MutationRecord

// ObserveOptions selects which records an observer receives.
type ObserveOptions struct {
	ChildList  bool
	Attributes bool
	Subtree    bool
}

// Observer receives batches of records for a subtree.
type Observer struct {
	doc      *Document
	target   *html.Node
	opts     ObserveOptions
	callback func(MutationBatch)
	pending  MutationBatch
}

// Observe registers callback for changes at or below target. Records are
// queued and handed over by DeliverMutations.
func (d *Document) Observe(target *html.Node, opts ObserveOptions, callback func(MutationBatch)) *Observer {
	o := &Observer{doc: d, target: target, opts: opts, callback: callback}
	d.observers = append(d.observers, o)
	return o
}

// Disconnect stops delivery and drops queued records.
func (o *Observer) Disconnect() {
	obs := o.doc.observers
	for i, other := range obs {
		if other == o {
			o.doc.observers = append(obs[:i:i], obs[i+1:]...)
			break
		}
	}
	o.pending = nil
}

// TakeRecords empties and returns the observer's queue.
func (o *Observer) TakeRecords() MutationBatch {
	batch := o.pending
	o.pending = nil
	return batch
}

func (o *Observer) wants(rec MutationRecord) bool {
	switch rec.Type {
	case ChildList:
		if !o.opts.ChildList {
			return false
		}
	case Attributes:
		if !o.opts.Attributes {
			return false
		}
	}
	if rec.Target == o.target {
		return true
	}
	return o.opts.Subtree && Contains(o.target, rec.Target)
}

func (d *Document) queue(rec MutationRecord) {
	for _, o := range d.observers {
		if o.wants(rec) {
			o.pending = append(o.pending, rec)
		}
	}
}

// maxDeliveryRounds bounds how often callbacks that mutate the tree can cause
// another delivery round within one DeliverMutations call.
const maxDeliveryRounds = 16

// DeliverMutations hands every observer its queued records. Records produced
// by callbacks are delivered in a further round.
func (d *Document) DeliverMutations() {
	for round := 0; round < maxDeliveryRounds; round++ {
		delivered := false
		for _, o := range append([]*Observer(nil), d.observers...) {
			batch := o.TakeRecords()
			if len(batch) == 0 {
				continue
			}
			delivered = true
			o.callback(batch)
		}
		if !delivered {
			return
		}
	}
}
