package coachsequence

// Coach is one physical vehicle in a coach group.
type Coach struct {
	IdentificationNumber string `json:"identificationNumber"`
	UIC                  string `json:"uic"`
	Type                 string `json:"type"`
	Category             string `json:"category"`
	Class                int    `json:"class"`
	Closed               bool   `json:"closed"`
}

// CoachGroup is a set of coaches that run coupled under one train name.
type CoachGroup struct {
	Name            string  `json:"name"`
	Number          string  `json:"number"`
	OriginName      string  `json:"originName"`
	DestinationName string  `json:"destinationName"`
	TrainName       string  `json:"trainName"`
	Coaches         []Coach `json:"coaches"`
}

type sequenceResponse struct {
	Sequence *struct {
		Groups []CoachGroup `json:"groups"`
	} `json:"sequence"`
}
