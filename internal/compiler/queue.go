package compiler

import "github.com/tendant/events-compiler/internal/process"

// pendingQueue is the FIFO of jobs waiting for the worker slot. It holds at
// most one job per scene; callers check find before push.
type pendingQueue struct {
	jobs []*process.Job
}

func (q *pendingQueue) len() int { return len(q.jobs) }

func (q *pendingQueue) push(j *process.Job) { q.jobs = append(q.jobs, j) }

func (q *pendingQueue) pop() *process.Job {
	if len(q.jobs) == 0 {
		return nil
	}
	j := q.jobs[0]
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	return j
}

func (q *pendingQueue) find(scene process.SceneID) *process.Job {
	for _, j := range q.jobs {
		if j.Scene == scene {
			return j
		}
	}
	return nil
}

// remove deletes every entry for scene and returns them in queue order.
func (q *pendingQueue) remove(scene process.SceneID) []*process.Job {
	var removed []*process.Job
	kept := q.jobs[:0]
	for _, j := range q.jobs {
		if j.Scene == scene {
			removed = append(removed, j)
			continue
		}
		kept = append(kept, j)
	}
	for i := len(kept); i < len(q.jobs); i++ {
		q.jobs[i] = nil
	}
	q.jobs = kept
	return removed
}

func (q *pendingQueue) drain() []*process.Job {
	jobs := q.jobs
	q.jobs = nil
	return jobs
}

func (q *pendingQueue) scenes() []process.SceneID {
	ids := make([]process.SceneID, len(q.jobs))
	for i, j := range q.jobs {
		ids[i] = j.Scene
	}
	return ids
}
