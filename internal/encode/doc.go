// Package encode provides the segment encoder collaborators that turn raw
// PCM extracted by the scheduler into delivery payloads.
package encode
