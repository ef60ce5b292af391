package batch

// onceSink forwards each keyword to the wrapped sink at most once. One is
// created per run.
type onceSink struct {
	next MissingSink
	seen map[string]struct{}
}

func newOnceSink(next MissingSink) *onceSink {
	if next == nil {
		next = discardSink{}
	}
	return &onceSink{next: next, seen: make(map[string]struct{})}
}

func (s *onceSink) Append(keywords ...string) error {
	fresh := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if _, ok := s.seen[k]; ok {
			continue
		}
		s.seen[k] = struct{}{}
		fresh = append(fresh, k)
	}
	if len(fresh) == 0 {
		return nil
	}
	if err := s.next.Append(fresh...); err != nil {
		for _, k := range fresh {
			delete(s.seen, k)
		}
		return err
	}
	return nil
}
