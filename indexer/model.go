package indexer

// sqlite models

type Height struct {
	Id     uint64 `gorm:"primary_key" json:"id"`
	Height uint64 `json:"height"`
}

type Registry struct {
	Id      uint64 `gorm:"primary_key" json:"id"`
	Creator string `json:"creator"`
	Members string `json:"members"`
	Size    uint64 `json:"size"`
	Height  uint64 `json:"height"`
}

type Proposal struct {
	Id             uint64 `gorm:"primary_key" json:"id"`
	Registry       uint64 `gorm:"index" json:"registry"`
	Proposer       string `gorm:"index" json:"proposer"`
	Title          string `json:"title"`
	Options        uint64 `json:"options"`
	Votes          uint64 `json:"votes"`
	Tallies        string `json:"tallies"`
	WindowStart    uint64 `json:"window_start"`
	WindowEnd      uint64 `json:"window_end"`
	Target         string `json:"target"`
	Status         uint64 `json:"status"`
	Winner         uint32 `json:"winner"`
	Invoked        bool   `json:"invoked"`
	NewHeight      uint64 `json:"new_height"`
	FinalizeHeight uint64 `json:"finalize_height"`
	ExecuteHeight  uint64 `json:"execute_height"`
}

type Vote struct {
	Id       uint64 `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Proposal uint64 `gorm:"index" json:"proposal"`
	Registry uint64 `json:"registry"`
	Voter    string `gorm:"index" json:"voter"`
	Option   uint32 `json:"option"`
	Tally    uint64 `json:"tally"`
	Height   uint64 `json:"height"`
}
