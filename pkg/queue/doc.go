// Package queue serializes commands to a device that can only work on
// one request at a time.
//
// A Queue holds outbound messages in FIFO order and transmits the head
// only when nothing is in flight. After each transmission it arms a
// single response timer whose length depends on the message's response
// class. Either a reply (ReadyToSend) or the timer expiring releases the
// queue for the next message; the two are treated the same for flow
// control, so a lost reply never stalls the queue.
//
// Messages enqueued while the link is down or the queue is paused are
// dropped, not buffered. Periodic requests such as status polls are
// naturally retried by their next cycle.
//
// A Queue is not safe for concurrent use. Its owner calls every method,
// including the timer callbacks delivered through the Scheduler, from
// one goroutine.
package queue
