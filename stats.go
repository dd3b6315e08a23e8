package mobcan

import "sync/atomic"

// Stats holds driver counters since the driver was created
type Stats struct {
	// Interrupt side
	ISRCount   uint32 // handler invocations
	RxCaptures uint32 // frames copied into a receive slot
	RxOverruns uint32 // captures that replaced an unread frame

	// Receive side
	RxDelivered    uint32 // frames returned by Receive
	RxRetries      uint32 // copies discarded because the slot was rewritten
	RxRetryCeiling uint32 // Receive calls that gave up

	// Transmit side
	TxDirect      uint32 // frames loaded straight into an idle mailbox
	TxQueued      uint32 // frames queued behind a busy mailbox
	TxDrained     uint32 // queued frames loaded by the handler
	TxRejected    uint32 // frames refused on a full queue
	TxOverwritten uint32 // queued frames replaced on a full queue
}

type counters struct {
	isrCount       atomic.Uint32
	rxCaptures     atomic.Uint32
	rxOverruns     atomic.Uint32
	rxDelivered    atomic.Uint32
	rxRetries      atomic.Uint32
	rxRetryCeiling atomic.Uint32
	txDirect       atomic.Uint32
	txQueued       atomic.Uint32
	txDrained      atomic.Uint32
	txRejected     atomic.Uint32
	txOverwritten  atomic.Uint32
}

// Stats returns a copy of the counters
func (d *Driver) Stats() Stats {
	c := &d.stats
	return Stats{
		ISRCount:       c.isrCount.Load(),
		RxCaptures:     c.rxCaptures.Load(),
		RxOverruns:     c.rxOverruns.Load(),
		RxDelivered:    c.rxDelivered.Load(),
		RxRetries:      c.rxRetries.Load(),
		RxRetryCeiling: c.rxRetryCeiling.Load(),
		TxDirect:       c.txDirect.Load(),
		TxQueued:       c.txQueued.Load(),
		TxDrained:      c.txDrained.Load(),
		TxRejected:     c.txRejected.Load(),
		TxOverwritten:  c.txOverwritten.Load(),
	}
}
