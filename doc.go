// Package govio is a completion-based asynchronous I/O core.
//
// Most async runtimes are built around readiness: poll a descriptor, then
// issue a syscall. That model cannot express what completion-based kernel
// facilities (Linux io_uring, Windows IOCP) actually do — the kernel takes
// ownership of a caller-provided buffer, performs the I/O, and later
// delivers both the result and the buffer back. govio provides a uniform
// submission/completion API over three backends (io_uring, IOCP, and a
// portable readiness-based fallback) plus a single-threaded cooperative
// scheduler that drives operations to completion with correct
// buffer-lifetime guarantees.
//
// govio itself does not provide filesystem, socket, process, or protocol
// wrappers. It provides the operation-submission contract and buffer
// traits those layers are built on top of.
package govio
