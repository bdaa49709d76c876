package server

import (
	"time"
)

// pollWatchList queues a poll of every watch list server at start and then every pollInterval.
func (s *Server) pollWatchList() {
	defer s.pollerWg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		for _, target := range s.watchList {
			select {
			case <-s.shutdown:
				return
			default:
			}
			s.enqueue(pollJob{Target: target, Source: "watch"})
		}

		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
		}
	}
}
