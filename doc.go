// Package mobcan is a driver for CAN controllers built around a small, fixed
// set of message objects (mailboxes). Mailbox 0 transmits; the others receive,
// each bound to one identifier filter.
//
// Two contexts share the driver state: mainline code calling Init,
// RegisterFilter, IsMessageAvailable, Receive and Transmit, and the interrupt
// handler (HandleInterrupt) run by the controller on reception and
// transmission complete events. No lock is shared between them :
//
//   - receive slots are written only by the handler and read only by Receive,
//     which copies optimistically and retries when the handler refilled the
//     slot during the copy;
//   - the transmit queue write position is advanced only by Transmit and the
//     read position only by the handler.
//
// Filters registered first get the lowest mailbox index and are dispatched
// first, so register them from highest to lowest priority.
package mobcan
