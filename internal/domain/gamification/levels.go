package gamification

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS: XP & LEVEL
// ══════════════════════════════════════════════════════════════════════════════

// XP представляет очки опыта студента.
type XP int

// IsValid проверяет, что XP неотрицательный.
func (x XP) IsValid() bool {
	return x >= 0
}

// Int возвращает значение как int.
func (x XP) Int() int {
	return int(x)
}

// Add складывает XP.
func (x XP) Add(delta XP) XP {
	return x + delta
}

// Level представляет уровень студента, вычисляемый из XP.
type Level int

// MinLevel - минимальный уровень. Студент без единого XP уже на первом уровне.
const MinLevel Level = 1

// IsValid проверяет, что уровень не ниже минимального.
func (l Level) IsValid() bool {
	return l >= MinLevel
}

// Int возвращает значение как int.
func (l Level) Int() int {
	return int(l)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL CURVE
// ══════════════════════════════════════════════════════════════════════════════

// BaseLevelCost - стоимость перехода с первого уровня на второй.
// Каждый следующий переход дорожает на эту же величину.
const BaseLevelCost XP = 100

// XPForNextLevel возвращает стоимость перехода с указанного уровня на следующий.
// Стоимость растёт линейно: переход с уровня L стоит BaseLevelCost * L.
func XPForNextLevel(level Level) XP {
	if level < MinLevel {
		level = MinLevel
	}
	return BaseLevelCost * XP(level)
}

// XPToReachLevel возвращает суммарный XP, необходимый для достижения уровня.
// Сумма арифметической прогрессии: BaseLevelCost * L * (L-1) / 2.
func XPToReachLevel(level Level) XP {
	if level <= MinLevel {
		return 0
	}
	n := XP(level)
	return BaseLevelCost * n * (n - 1) / 2
}

// LevelFor вычисляет уровень по суммарному XP.
// Функция монотонна: больший XP никогда не даёт меньший уровень.
// Отрицательный XP трактуется как ноль, LevelFor(0) == MinLevel.
func LevelFor(totalXP XP) Level {
	if totalXP < 0 {
		totalXP = 0
	}

	level := MinLevel
	for totalXP >= XPToReachLevel(level+1) {
		level++
	}
	return level
}

// XPProgressInLevel возвращает прогресс внутри текущего уровня.
// Результат всегда в диапазоне [0, XPForNextLevel(level)).
func XPProgressInLevel(totalXP XP, level Level) XP {
	if totalXP < 0 {
		totalXP = 0
	}
	if level < MinLevel {
		level = MinLevel
	}

	progress := totalXP - XPToReachLevel(level)
	if progress < 0 {
		return 0
	}
	if max := XPForNextLevel(level); progress >= max {
		return max - 1
	}
	return progress
}

// ProgressPercent возвращает прогресс к следующему уровню в процентах (0-100).
func ProgressPercent(totalXP XP, level Level) int {
	cost := XPForNextLevel(level)
	if cost == 0 {
		return 100
	}
	return int(XPProgressInLevel(totalXP, level)) * 100 / int(cost)
}

// ══════════════════════════════════════════════════════════════════════════════
// BELTS (Пояса)
// ══════════════════════════════════════════════════════════════════════════════

// Belt представляет пояс, соответствующий диапазону уровней.
type Belt string

const (
	BeltWhite  Belt = "white"
	BeltYellow Belt = "yellow"
	BeltOrange Belt = "orange"
	BeltGreen  Belt = "green"
	BeltBlue   Belt = "blue"
	BeltBrown  Belt = "brown"
	BeltBlack  Belt = "black"
)

// BeltFor возвращает пояс для указанного уровня.
func BeltFor(level Level) Belt {
	switch {
	case level < 5:
		return BeltWhite
	case level < 10:
		return BeltYellow
	case level < 15:
		return BeltOrange
	case level < 20:
		return BeltGreen
	case level < 30:
		return BeltBlue
	case level < 40:
		return BeltBrown
	default:
		return BeltBlack
	}
}

// Title возвращает название пояса для отображения.
func (b Belt) Title() string {
	switch b {
	case BeltWhite:
		return "Белый пояс"
	case BeltYellow:
		return "Жёлтый пояс"
	case BeltOrange:
		return "Оранжевый пояс"
	case BeltGreen:
		return "Зелёный пояс"
	case BeltBlue:
		return "Синий пояс"
	case BeltBrown:
		return "Коричневый пояс"
	case BeltBlack:
		return "Чёрный пояс"
	default:
		return string(b)
	}
}
