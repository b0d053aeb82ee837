package sqlinline

// QInsertOrder reserves stock and writes the order with its lines in one
// statement. $7 is a jsonb array of {product_id, title, quantity,
// unit_price_won} with one entry per product. A line asking for more than is
// left trips products_stock_check and aborts the whole statement, so stock is
// never reduced for an order that was not written. Concurrent orders for the
// same product serialize on its row lock and re-check against the new stock.
const QInsertOrder = `--sql 00fcfa40-631c-412f-8bea-3d84d3f2fc9a
with wanted as (
    select i.product_id, i.title, i.quantity, i.unit_price_won
    from jsonb_to_recordset($7::jsonb) as i(product_id uuid, title text, quantity int, unit_price_won bigint)
),
reserved as (
    update products p
    set stock = p.stock - w.quantity, updated_at = now()
    from wanted w
    where p.id = w.product_id
),
new_order as (
    insert into orders(id, customer_name, customer_email, customer_phone, address, status, total_won, created_at, updated_at)
    values (gen_random_uuid(), $1::text, $2::text, $3::text, $4::text, $5::text, $6::bigint, now(), now())
    returning id, created_at, updated_at
),
lines as (
    insert into order_items(order_id, product_id, title, quantity, unit_price_won)
    select o.id, w.product_id, w.title, w.quantity, w.unit_price_won
    from new_order o
    cross join wanted w
    returning 1
)
select id::text, created_at, updated_at, (select count(*) from lines)::int
from new_order;
`

const QGetOrder = `--sql 0b32aa21-e703-4efe-98e1-50f482202bfe
select id::text, customer_name, customer_email, customer_phone, address, status, total_won, created_at, updated_at
from orders
where id = $1::uuid;
`

const QListOrderItems = `--sql 5b22f166-93e9-4da6-85dc-e464a9f4ae8f
select product_id::text, title, quantity, unit_price_won
from order_items
where order_id = $1::uuid
order by title, product_id;
`

const QListOrdersByStatus = `--sql 4f700973-9c6f-44ad-b5f6-a40ed0e86212
select id::text, customer_name, customer_email, customer_phone, address, status, total_won, created_at, updated_at,
       count(*) over() as total
from orders
where ($1::text = '' or status = $1::text)
order by created_at desc, id
limit $2::int offset $3::int;
`

// QUpdateOrderStatus only applies when the row is still in the expected
// status, so concurrent transitions cannot skip a step.
const QUpdateOrderStatus = `--sql ff9fdb00-39fb-4218-9fd2-8147ca758a7e
update orders
set status = $3::text, updated_at = now()
where id = $1::uuid and status = $2::text;
`
