package branches

import (
	"strings"

	internalShared "github.com/odyssey-erp/odyssey-crm/internal/shared"
)

func (s *Service) validate(form BranchForm) (Branch, error) {
	b := Branch{
		Code:    strings.ToUpper(strings.TrimSpace(form.Code)),
		Name:    strings.TrimSpace(form.Name),
		Address: strings.TrimSpace(form.Address),
	}
	verr := &internalShared.ValidationError{}
	if b.Code == "" {
		verr.Add("code", "branch code is required")
	}
	if b.Name == "" {
		verr.Add("name", "branch name is required")
	}
	return b, verr.Err()
}
