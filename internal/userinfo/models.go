package userinfo

// CredentialStatusPending tells the relying party the credential will follow
// on the outcome stream once the vendor reports back.
const CredentialStatusPending = "pending"

type Request struct {
	Authorization string
}

type Result struct {
	Subject          string `json:"sub"`
	CredentialStatus string `json:"https://vocab.account.gov.uk/v1/credentialStatus"`
}
