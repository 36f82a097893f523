// Package reminder implements the reminder scheduler.
//
// # Overview
//
// A Scheduler owns an ordered list of Tasks. Each task is due at a time of day
// ("HH:MM", minute granularity) and recurs daily while it stays in the list.
// On every tick (nominally once per second) the scheduler derives the current
// minute key, and fires every task whose time equals that key and which has not
// fired yet during the same minute. The set of fired task IDs is cleared as
// soon as the observed minute changes.
//
// A missed tick (process suspended, clock jump) means a missed firing. There
// is no catch-up.
//
// # Firing
//
// Reminder tasks are announced ("Reminder: <message>"). Call tasks run the
// call confirmation: the user is asked whether to call the contact, then a
// single race between a recognized answer, a recognition error and a timeout
// decides the outcome. Recognition and the timer are torn down on every exit
// path.
//
// # Ports
//
// Speech output, speech recognition and the dialer are external collaborators
// (Announcer, VoiceInput, Dialer). Failures in any of them are logged or
// apologized for and never stop the tick loop or remove a task.
package reminder
