// Command ydhouse is the command-line front end for the ydhouse daemon.
//
// Most commands talk to the daemon's loopback JSON API; `ydhouse daemon run`
// hosts the daemon in the foreground and `ydhouse daemon start` launches it
// in the background.
package main
