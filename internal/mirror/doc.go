// Package mirror transfers SDSS data files from a remote server into a local
// mirror that reproduces the remote directory hierarchy.
//
// The mirror is a gocloud blob bucket. A plain directory path is opened with
// fileblob so files land where the bossdata tools expect them, and any
// bucket URL (mem://, s3://, gs://, file://) is opened through blob.OpenBucket.
package mirror
