/*
Package bridge carries requests from the sandbox to the host.

# Model

Any number of sandbox-side call sites submit typed requests; exactly one
host-side consumer takes them off the channel in submission order, performs
the effect and deposits one reply into the request's reply slot:

	sandbox call sites --Send/Post--> [unbounded queue] --Next--> host loop
	      ^                                                          |
	      +------------------- one-shot reply slot <-----------------+

Because the consumer is sequential, host effects are totally ordered even
though submission is concurrent.

# Cancellation

A reply slot that is dropped without a value (host shutdown mid-request, or
Close with requests still queued) resolves the waiting caller with
ErrDisconnected. A caller can therefore tell "host refused" (the error the
host replied with) from "host gone" (ErrDisconnected). Callers never wait
forever: either a reply arrives, the slot is dropped, or their context ends.
*/
package bridge
