// Package jobs is the façade the command surface talks to. It turns user
// intents (download, embed, check, convert, search, ask) into worker
// invocations with the right interpreter, arguments, working directory and
// environment, and hands them to the process supervisor.
//
// Streamed jobs run under fixed tags so each kind has at most one live run;
// their progress reaches subscribers through the event bus. Search, question
// answering and channel listing are one-shot calls that return captured
// output to the caller.
package jobs
