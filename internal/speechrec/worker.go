package speechrec

// transcribeRequest/transcribeResponse are generation-tagged messages
// exchanged with the dedicated worker thread that owns the strategy (and,
// for a local whisper backend, the model context). Grounded on
// original_source's TranscribeRequest/TranscribeResponse + spawn_transcriber.
type transcribeRequest struct {
	generation uint64
	pcm        []byte
	sampleRate int
	channels   int
	end        bool
}

type transcribeResponse struct {
	generation uint64
	text       string
	isFinal    bool
	err        error
}

// spawnWorker starts the dedicated goroutine (standing in for the Rust
// std::thread::spawn'd worker) that owns strategy and serializes access to
// it. It silently returns if reqs closes; the caller (the task loop) treats
// a closed resp channel as worker death, which the supervisor will restart.
func spawnWorker(strategy Strategy, reqs <-chan transcribeRequest, resp chan<- transcribeResponse) {
	defer close(resp)
	for req := range reqs {
		if req.end {
			text, err := strategy.OnAudioEnd()
			if err != nil {
				resp <- transcribeResponse{generation: req.generation, err: err}
				continue
			}
			if text == nil {
				continue
			}
			resp <- transcribeResponse{generation: req.generation, text: *text, isFinal: true}
			continue
		}

		partial, err := strategy.OnAudioChunk(req.pcm, req.sampleRate, req.channels)
		if err != nil {
			resp <- transcribeResponse{generation: req.generation, err: err}
			continue
		}
		if partial != nil {
			resp <- transcribeResponse{generation: req.generation, text: *partial, isFinal: false}
		}
	}
}
