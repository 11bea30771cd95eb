package jobs

// Table is the ordered registry of a session's jobs.
type Table struct {
	jobs      []*Job
	nextID    int
	lastFound int
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{nextID: 1, lastFound: 1}
}

// Register assigns the job the next id and appends it.
func (t *Table) Register(j *Job) int {
	j.ID = t.nextID
	t.nextID++
	t.jobs = append(t.jobs, j)
	return j.ID
}

// Remove unlinks j. Ids, and the job a bare lookup resolves to, start over
// from 1 once the table is empty.
func (t *Table) Remove(j *Job) {
	for i, candidate := range t.jobs {
		if candidate == j {
			t.jobs = append(t.jobs[:i:i], t.jobs[i+1:]...)
			break
		}
	}
	if len(t.jobs) == 0 {
		t.nextID = 1
		t.lastFound = 1
	}
}

// Find looks a job up by process group or by id, where zero means "not
// given". With neither given it returns the last job found by id.
func (t *Table) Find(pgid, jobID int) (*Job, error) {
	if pgid == 0 && jobID == 0 {
		jobID = t.lastFound
	}
	for _, j := range t.jobs {
		if (pgid != 0 && j.pgid == pgid) || (jobID != 0 && j.ID == jobID) {
			if jobID != 0 {
				t.lastFound = jobID
			}
			return j, nil
		}
	}
	return nil, ErrJobNotFound
}

// FindProcess returns the stage running as pid. Pid 0 never matches.
func (t *Table) FindProcess(pid int) (*Process, error) {
	if pid == 0 {
		return nil, ErrProcessNotFound
	}
	for _, j := range t.jobs {
		for _, p := range j.processes {
			if p.pid == pid {
				return p, nil
			}
		}
	}
	return nil, ErrProcessNotFound
}

// All returns the jobs in registration order.
func (t *Table) All() []*Job {
	return append([]*Job(nil), t.jobs...)
}

// Len is the number of registered jobs.
func (t *Table) Len() int {
	return len(t.jobs)
}
