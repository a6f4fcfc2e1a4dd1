/*
Package framed is a reusable TCP server building block that owns the listening
socket, frames inbound bytes into logical messages through a pluggable Codec
and delivers lifecycle events to a consumer-supplied EventSink.

### Features
- Make the zero value useful.
  - Only Sink is mandatory; every other component has a reasonable default.
- Provides much flexibility through built-in interfaces.
  - Codec
    - LineCodec that frames on a line terminator (the default).
    - Every connection gets private input/output clones so that one
      connection's partial-frame state cannot leak into another's.
  - EventSink
    - The consumer callback contract: inbound frame, connect, listen error,
      socket error, flushed.
    - BaseSink that supplies defaults for everything except OnInboundFrame.
  - Logger
    - ZeroLogger that logs through rs/zerolog.
  - Retry
    - ExponentialRetry that implements exponential backoff without jitter
      for temporary accept errors.
  - Statistics
    - TrafficStatistics that accumulates in/out traffic across a server.
- Serialized event delivery: no two sink callbacks for one server instance
  ever run concurrently.
- Registry introspection (GetConn, SetConn, DeleteConn, Count, Exists) for
  advanced consumers.
- Prometheus instrumentation of accepts, frames, bytes and socket errors.

### TODO
- Support multiple listeners
*/
package framed
