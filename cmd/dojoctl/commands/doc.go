// Package commands описывает CLI dojoctl и собирает зависимости для подкоманд.
//
// Команды
//
//   - report     Отчёт о прогрессе одного или нескольких учеников
//   - roster     Сводка по всем ученикам: готовы, просрочены, в процессе
//   - validate   Проверка истории учеников из выгрузки по лестнице поясов
//   - ladder     Лестница поясов категории с требованиями
//   - estimate   Расчётная дата экзамена от заданной базовой даты
//   - migrate    Миграции схемы PostgreSQL (up, down, status)
//
// # Реализация
//
// Команды отчётов поднимают app.App поверх хранилища в памяти, заполненного
// из --snapshot, с часами, зафиксированными на --as-of. Redis не используется:
// каждый запуск считает отчёты заново.
package commands
