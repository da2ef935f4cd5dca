// Package clearsky counts stars in all-sky camera frames and decides when
// to raise a clear-sky alert.
//
// A run matches a star Template against a Frame with normalized
// cross-correlation (Match), reduces the score map to distinct stars
// (Cluster or ClusterNMS) and, when the count exceeds the configured
// threshold, asks a NotificationGate for permission before handing an Alert
// to an AlertTransport. Pipeline ties these steps together and optionally
// writes an annotated copy of the frame through an AnnotationSink.
//
// Template matching runs on OpenCV through gocv by default. Building with
// the purego tag (or for js) selects a pure Go implementation with the same
// scores.
package clearsky
