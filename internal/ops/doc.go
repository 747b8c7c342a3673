// Package ops is the capability surface exposed to plugin code.
//
// Every operation is one of three shapes:
//
//   - a local read of host-held plugin data, answered without crossing
//     the render bridge;
//   - a detached host action, posted to the bridge and acknowledged on
//     submission only;
//   - a round trip, which submits a request and waits for its reply.
//
// Arguments are validated before anything is submitted, so a malformed
// call never reaches the host.
package ops
