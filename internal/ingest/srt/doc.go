// Package srt implements SRT ingest of transport streams carrying
// teletext: a listener (Server) accepting publish connections and a caller
// (Caller) pulling from remote SRT listeners.
package srt
