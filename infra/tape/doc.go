// Package tape records the input event stream of a book as framed,
// checksummed records in size-rotated segment files, and reads it back for
// replay. Event payloads use the protobuf wire format.
package tape
