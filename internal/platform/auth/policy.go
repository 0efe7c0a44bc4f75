package auth

type Role string

const (
	RoleOperator   Role = "operator"
	RoleSupervisor Role = "supervisor"
)

func (r Role) Valid() bool { return r == RoleOperator || r == RoleSupervisor }

// Identity は認証済みの呼び出し元
type Identity struct {
	Subject string
	Role    Role
}

type Action string

const (
	ActionViewCatalog     Action = "catalog.view"
	ActionManageCatalog   Action = "catalog.manage"
	ActionManageReaders   Action = "readers.manage"
	ActionDeleteReader    Action = "readers.delete"
	ActionViewLoans       Action = "loans.view"
	ActionCreateLoan      Action = "loans.create"
	ActionReturnLoan      Action = "loans.return"
	ActionMarkStolen      Action = "loans.mark_stolen"
	ActionRepairInventory Action = "inventory.repair"
	ActionViewDashboard   Action = "dashboard.view"
	ActionViewReport      Action = "reports.view"
)

// Policy は認可判断だけを行う。貸出エンジンはこれを知らない。
type Policy interface {
	Allow(id Identity, action Action) bool
}

// RolePolicy: action ごとに許可ロールを持つ
type RolePolicy struct {
	grants map[Action]map[Role]struct{}
}

func NewRolePolicy(grants map[Action][]Role) *RolePolicy {
	p := &RolePolicy{grants: make(map[Action]map[Role]struct{}, len(grants))}
	for a, roles := range grants {
		set := make(map[Role]struct{}, len(roles))
		for _, r := range roles {
			set[r] = struct{}{}
		}
		p.grants[a] = set
	}
	return p
}

// DefaultPolicy: 窓口(operator)は貸出・返却・利用者登録、管理者(supervisor)は全て
func DefaultPolicy() *RolePolicy {
	both := []Role{RoleOperator, RoleSupervisor}
	sup := []Role{RoleSupervisor}
	return NewRolePolicy(map[Action][]Role{
		ActionViewCatalog:     both,
		ActionManageCatalog:   sup,
		ActionManageReaders:   both,
		ActionDeleteReader:    sup,
		ActionViewLoans:       both,
		ActionCreateLoan:      both,
		ActionReturnLoan:      both,
		ActionMarkStolen:      both,
		ActionRepairInventory: sup,
		ActionViewDashboard:   both,
		ActionViewReport:      sup,
	})
}

func (p *RolePolicy) Allow(id Identity, action Action) bool {
	set, ok := p.grants[action]
	if !ok {
		return false
	}
	_, ok = set[id.Role]
	return ok
}
