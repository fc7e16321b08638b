// Package publisher implements the UI-automation engine that publishes
// Zhihu ideas and articles through a remote browser control channel.
//
// The engine is built from four primitives composed by two fixed flows:
//
//  1. Locator: finds the DOM or accessibility node a step targets, using
//     either live CSS selectors or accessibility snapshots.
//  2. Injector: writes a value so the page's own reactive state picks it
//     up, not just the raw DOM attribute.
//  3. Sequencer: runs the fixed step list with settle waits, tolerating
//     steps whose outcome cannot be confirmed.
//  4. Classifier: turns the page's final text and URL into a
//     confidence-ranked publish result.
//
// # Ambiguity is not failure
//
// The target page re-renders aggressively while a flow runs. A script can
// click a button that works and still read back nothing, because the node
// it reported through was replaced mid-call. The engine therefore treats a
// missing readback as an unknown outcome and keeps going; only structurally
// required elements (the title and content fields) abort a flow when they
// cannot be located at all.
//
// # One attempt per call
//
// Each publish call is a single best-effort pass: dial the control channel,
// run the steps, classify, disconnect. Nothing is retried at the flow
// level, and the shared browser is never closed or reset - the channel
// disconnects and leaves it running.
package publisher
