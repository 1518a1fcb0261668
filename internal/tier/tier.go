// Package tier описывает уровни доступа к учебному контенту и их строгий
// порядок: free < basic < premium. Все решения об авторизации контента
// принимаются сравнением рангов уровней, а не сравнением строк.
package tier

// Tier уровень доступа пользователя или требуемый уровень контента.
type Tier string

const (
	// Free — бесплатный уровень, доступен каждому пользователю.
	Free Tier = "free"
	// Basic — платный базовый уровень.
	Basic Tier = "basic"
	// Premium — максимальный платный уровень.
	Premium Tier = "premium"
)

// Rank возвращает позицию уровня в порядке free < basic < premium.
// Неизвестный уровень трактуется как free: отказать в лишнем контенте
// безопаснее, чем раскрыть его.
func Rank(t Tier) int {
	switch t {
	case Basic:
		return 1
	case Premium:
		return 2
	default:
		return 0
	}
}

// Parse преобразует строку из хранилища или запроса в Tier.
// Пустое или неизвестное значение превращается в Free.
func Parse(s string) Tier {
	switch Tier(s) {
	case Basic:
		return Basic
	case Premium:
		return Premium
	default:
		return Free
	}
}

// Top возвращает максимальный уровень иерархии.
func Top() Tier {
	return Premium
}

// Role роль пользователя в системе.
type Role string

const (
	// RoleStudent — обычный учащийся, доступ определяется подпиской.
	RoleStudent Role = "student"
	// RoleTeacher — преподаватель, всегда имеет полный доступ.
	RoleTeacher Role = "teacher"
	// RoleAdmin — администратор, всегда имеет полный доступ.
	RoleAdmin Role = "admin"
)

// ParseRole преобразует строку в Role, неизвестные значения становятся student.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleTeacher:
		return RoleTeacher
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleStudent
	}
}

// RoleHasFullAccess сообщает, даёт ли роль полный доступ в обход подписки.
func RoleHasFullAccess(r Role) bool {
	return r == RoleTeacher || r == RoleAdmin
}
