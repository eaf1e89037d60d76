package service

import (
	"sync"

	"qms-data/internal/store"
)

// Options workflow switches and backing stores for New.
type Options struct {
	AutoAssignTraining bool
	TrainingDueDays    int
	KV                 store.KV
	Archive            BackupArchive // nil disables archiving
}

// Services every QMS service wired to one store
type Services struct {
	Users       *UserService
	MasterData  *MasterDataService
	Documents   *DocumentService
	Training    *TrainingService
	NCRs        *NCRService
	Complaints  *ComplaintService
	Incidents   *IncidentService
	Tickets     *TicketService
	Inspections *InspectionService
	Backup      *BackupService
}

func New(d Deps, opts Options) *Services {
	if opts.KV == nil {
		opts.KV = store.NewMemoryKV()
	}
	if d.Workflow == nil {
		d.Workflow = &sync.Mutex{}
	}
	if d.Sequencer == nil {
		d.Sequencer = NewSequencer(opts.KV)
	}
	training := NewTrainingService(d, opts.TrainingDueDays)
	ncrs := NewNCRService(d)
	return &Services{
		Users:       NewUserService(d),
		MasterData:  NewMasterDataService(d),
		Documents:   NewDocumentService(d, training, opts.AutoAssignTraining),
		Training:    training,
		NCRs:        ncrs,
		Complaints:  NewComplaintService(d, ncrs),
		Incidents:   NewIncidentService(d),
		Tickets:     NewTicketService(d, ncrs),
		Inspections: NewInspectionService(d),
		Backup:      NewBackupService(d, opts.KV, opts.Archive),
	}
}
