// Command shotsync drives the offline-first project sync engine: it runs the
// background drain loop, queues uploads, reconciles guest projects into the
// cloud, hydrates remote projects, and inspects the local queue.
//
// Every command that touches the queue or the project store takes the
// data-directory lock for its duration, so one-shot commands fail while
// `shotsync run` is active.
package main
